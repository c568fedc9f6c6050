package mgmtapi

import (
	"net/http"

	"github.com/mgmtapi/mgmtapi-go/internal/common/httpclient"
	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// Transport classification codes carried in Response.Code.
const (
	CodeFingerprintVerifyFailure = httpclient.CodeFingerprintVerifyFailure
	CodeCommunicationTimeout     = httpclient.CodeCommunicationTimeout
	CodeCommunicationError       = httpclient.CodeCommunicationError
	CodeGenericError             = httpclient.CodeGenericError
)

// Response is the outcome of one API call. When the server answered, Success is
// true exactly when StatusCode is 200. When it did not, StatusCode is 0, Code holds
// the classification and Data is {"code": Code, "message": ErrorMessage}.
type Response struct {
	Success      bool
	StatusCode   int
	Data         types.Document
	ErrorMessage string
	Warnings     []types.Document
	Errors       []types.Document
	Code         string
}

func newHTTPResponse(status int, body []byte) *Response {
	data, err := types.ParseDocument(body)
	if err != nil {
		return newTransportResponse(CodeGenericError, "malformed response body: "+err.Error())
	}
	r := &Response{
		Success:    status == http.StatusOK,
		StatusCode: status,
		Data:       data,
	}
	r.Warnings, _ = data.GetDocuments("warnings")
	r.Errors, _ = data.GetDocuments("errors")
	if blocking, err := data.GetDocuments("blocking-errors"); err == nil {
		r.Errors = append(r.Errors, blocking...)
	}
	if !r.Success {
		if msg, err := data.GetString("message"); err == nil && !msg.IsNil() {
			r.ErrorMessage = msg.String()
		} else {
			r.ErrorMessage = http.StatusText(status)
		}
	}
	return r
}

func newTransportResponse(code, message string) *Response {
	data, _ := types.NewDocument().With("code", code)
	data, _ = data.With("message", message)
	return &Response{
		Data:         data,
		ErrorMessage: message,
		Code:         code,
	}
}

// TransportFailure reports whether the call never got an HTTP response.
func (r *Response) TransportFailure() bool {
	return r.StatusCode == 0
}

// ServerCode returns the "code" field of the reply, such as "generic_err_object_not_found".
func (r *Response) ServerCode() string {
	code, err := r.Data.GetString("code")
	if err != nil {
		return ""
	}
	return code.String()
}

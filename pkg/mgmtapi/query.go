package mgmtapi

import (
	"bytes"
	"context"
	"iter"

	"github.com/mgmtapi/mgmtapi-go/pkg/types"
)

// QueryOptions control a paginated query.
type QueryOptions struct {
	// AggregationKey names the array accumulated across pages. Default "objects".
	AggregationKey string
	// DetailsLevel is sent as "details-level". Default "standard".
	DetailsLevel string
	// Payload holds additional request fields.
	Payload any
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.AggregationKey == "" {
		o.AggregationKey = "objects"
	}
	if o.DetailsLevel == "" {
		o.DetailsLevel = "standard"
	}
	return o
}

// Query fetches every page of a show command and returns one Response whose
// AggregationKey array holds all items. "total" is kept; "from" and "to" are
// removed. A failed page is returned as-is.
func (c *Client) Query(ctx context.Context, s *Session, command string, opts QueryOptions) (*Response, error) {
	opts = opts.withDefaults()

	var (
		last  *Response
		items [][]byte
	)
	for page, err := range c.QueryPages(ctx, s, command, opts) {
		if err != nil {
			return nil, err
		}
		if !page.Success {
			return page, nil
		}
		last = page
		if arr, err := page.Data.GetArray(opts.AggregationKey); err == nil {
			for _, item := range arr {
				items = append(items, []byte(item.Raw))
			}
		}
	}
	if last == nil {
		return nil, ErrInvalidCommand.Msg("query " + command + " returned no pages")
	}
	if !last.Data.Has(opts.AggregationKey) {
		return last, nil
	}

	merged := append(append([]byte{'['}, bytes.Join(items, []byte{','})...), ']')
	data, err := last.Data.WithRaw(opts.AggregationKey, merged)
	if err != nil {
		return nil, ErrInvalidPayload.MsgErr("cannot aggregate pages", err)
	}
	out := *last
	out.Data = data.Without("from").Without("to")
	return &out, nil
}

// QueryPages yields each page of a show command in order. Iteration stops after
// the last page, after a failed page, or when the consumer stops.
func (c *Client) QueryPages(ctx context.Context, s *Session, command string, opts QueryOptions) iter.Seq2[*Response, error] {
	opts = opts.withDefaults()
	return func(yield func(*Response, error) bool) {
		if err := checkSession(s); err != nil {
			yield(nil, err)
			return
		}
		base, err := toDocument(opts.Payload)
		if err != nil {
			yield(nil, err)
			return
		}
		limit := c.cfg.PageLimit
		received := 0
		for offset := 0; ; offset += limit {
			payload, err := pagePayload(base, limit, offset, opts.DetailsLevel)
			if err != nil {
				yield(nil, err)
				return
			}
			resp, err := c.Call(ctx, s, command, payload, false)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(resp, nil) || !resp.Success {
				return
			}

			arr, err := resp.Data.GetArray(opts.AggregationKey)
			if err != nil || len(arr) == 0 {
				return
			}
			total, err := resp.Data.GetInt("total")
			if err != nil || total == 0 {
				return
			}
			received += len(arr)
			if to, err := resp.Data.GetInt("to"); err == nil && to >= total {
				return
			}
			if int64(received) >= total {
				return
			}
			c.logger.Debug().Str("command", command).Int("received", received).Int64("total", total).Msg("fetching next page")
		}
	}
}

func pagePayload(base types.Document, limit, offset int, detailsLevel string) (types.Document, error) {
	doc, err := base.With("limit", limit)
	if err == nil {
		doc, err = doc.With("offset", offset)
	}
	if err == nil && !base.Has("details-level") {
		doc, err = doc.With("details-level", detailsLevel)
	}
	if err != nil {
		return types.Document{}, ErrInvalidPayload.MsgErr("cannot build page request", err)
	}
	return doc, nil
}

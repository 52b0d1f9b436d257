package flightio

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Client fetches tensors from a flightio Server.
type Client struct {
	fc flight.Client
}

func Dial(addr string) (*Client, error) {
	fc, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("flight dial %s: %w", addr, err)
	}
	return &Client{fc: fc}, nil
}

func (c *Client) Close() error {
	return c.fc.Close()
}

// GetTensor retrieves a named tensor with its shape and dtype metadata.
func (c *Client) GetTensor(ctx context.Context, name string) (Entry, error) {
	stream, err := c.fc.DoGet(ctx, &flight.Ticket{Ticket: []byte(name)})
	if err != nil {
		return Entry{}, fmt.Errorf("fetch tensor %q: %w", name, err)
	}
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return Entry{}, fmt.Errorf("open record stream for %q: %w", name, err)
	}
	defer rdr.Release()

	md := rdr.Schema().Metadata()
	e := Entry{}
	dims := [4]*int{&e.Shape.N, &e.Shape.C, &e.Shape.H, &e.Shape.W}
	for i, key := range []string{"n", "c", "h", "w"} {
		idx := md.FindKey(key)
		if idx < 0 {
			return Entry{}, fmt.Errorf("tensor %q: schema missing %q", name, key)
		}
		v, err := strconv.Atoi(md.Values()[idx])
		if err != nil {
			return Entry{}, fmt.Errorf("tensor %q: bad dimension %q: %w", name, key, err)
		}
		*dims[i] = v
	}
	if idx := md.FindKey("dtype"); idx >= 0 {
		switch md.Values()[idx] {
		case tile.BFloat16.String():
			e.DType = tile.BFloat16
		case tile.BFP8.String():
			e.DType = tile.BFP8
		default:
			e.DType = tile.Float32
		}
	}

	for rdr.Next() {
		rec := rdr.Record()
		col, ok := rec.Column(0).(*array.Float32)
		if !ok {
			return Entry{}, fmt.Errorf("tensor %q: unexpected column type %s", name, rec.Column(0).DataType())
		}
		e.Data = append(e.Data, col.Float32Values()...)
	}
	if err := rdr.Err(); err != nil {
		return Entry{}, fmt.Errorf("read tensor %q: %w", name, err)
	}
	if len(e.Data) != e.Shape.NumElements() {
		return Entry{}, fmt.Errorf("tensor %q: got %d elements for shape %s", name, len(e.Data), e.Shape)
	}
	return e, nil
}

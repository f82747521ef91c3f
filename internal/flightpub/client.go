// Package flightpub streams converted components to an Arrow Flight
// endpoint, so a serving node can ingest a model without touching the
// filesystem.
package flightpub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-fletcher/internal/arrowio"
	"github.com/23skdu/longbow-fletcher/internal/logger"
	"github.com/23skdu/longbow-fletcher/internal/model"
)

// Publisher sends component batches somewhere. The flight client and
// the in-memory mock both satisfy it.
type Publisher interface {
	Connect(ctx context.Context) error
	Close() error
	PublishComponent(ctx context.Context, path string, rows []arrowio.Row) error
}

// Client is a Flight DoPut publisher over an insecure gRPC channel.
type Client struct {
	addr    string
	timeout time.Duration
	client  flight.Client
}

func NewClient(addr string) *Client {
	return &Client{
		addr:    addr,
		timeout: 30 * time.Second,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddlewareCtx(ctx, c.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("flight dial %s: %w", c.addr, err)
	}
	c.client = client
	return nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// PublishComponent streams one component as a DoPut with a PATH
// descriptor derived from the component file name.
func (c *Client) PublishComponent(ctx context.Context, path string, rows []arrowio.Row) error {
	if c.client == nil {
		return fmt.Errorf("client not connected, call Connect() first")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("DoPut %s: %w", path, err)
	}

	wr := flight.NewRecordWriter(stream, ipc.WithSchema(arrowio.Schema()))
	wr.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{descriptorPath(path)},
	})

	rec := arrowio.NewRecord(rows)
	defer rec.Release()

	if err := wr.Write(rec); err != nil {
		_ = wr.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("closing writer for %s: %w", path, err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("closing stream for %s: %w", path, err)
	}

	logger.Log.Info("published component", "path", path, "tensors", len(rows))
	return nil
}

// PublishModel streams every component of m through p in write order.
func PublishModel(ctx context.Context, p Publisher, m *model.Model) error {
	for _, c := range arrowio.ModelComponents(m) {
		if err := p.PublishComponent(ctx, c.File, c.Rows); err != nil {
			return err
		}
	}
	return nil
}

func descriptorPath(file string) string {
	return strings.TrimSuffix(file, ".arrow")
}

package host

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Protocol-Lattice/specgen/src/protocol"
)

// Serve reads messages from r and writes responses to w until r is exhausted or ctx is done.
// Generate requests run concurrently so a new one can be issued while another is in flight;
// applies are handled inline. Serve returns after every started request has answered.
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := protocol.NewDecoder(r)
	enc := protocol.NewEncoder(w)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		in, err := dec.Next()
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			wg.Wait()
			return enc.Err()
		case errors.Is(err, protocol.ErrMalformed):
			h.log.Warn("malformed message", "error", err)
			enc.Post(protocol.NewNotice(protocol.LevelError, err.Error()))
			continue
		default:
			h.log.Error("bridge input failed", "error", err)
			enc.Post(protocol.NewNotice(protocol.LevelError, err.Error()))
			wg.Wait()
			return err
		}

		h.log.Debug("message received", "command", in.Command, "request_id", in.RequestID)
		if in.Command == protocol.ApplyCode {
			h.Handle(ctx, in, enc)
			continue
		}
		wg.Add(1)
		go func(in protocol.Inbound) {
			defer wg.Done()
			h.Handle(ctx, in, enc)
		}(in)
	}
}

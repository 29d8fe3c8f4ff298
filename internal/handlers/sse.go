package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/feed"
	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const (
	heartbeatInterval = 15 * time.Second

	progressStep     = 0.05
	progressInterval = 500 * time.Millisecond
)

// orderView is one order as the status screens render it.
type orderView struct {
	models.Order
	Label string `json:"label"`
}

type snapshotEvent struct {
	Orders []orderView `json:"orders"`
	Error  string      `json:"error,omitempty"`
	At     time.Time   `json:"at"`
}

func newSnapshotEvent(snap feed.Snapshot) snapshotEvent {
	evt := snapshotEvent{Orders: make([]orderView, 0, len(snap.Orders)), At: snap.At}
	for _, o := range snap.Orders {
		evt.Orders = append(evt.Orders, orderView{Order: o, Label: feed.DisplayLabel(0, o.Status)})
	}
	if snap.Err != nil {
		evt.Error = snap.Err.Error()
	}
	return evt
}

type progressEvent struct {
	Progress float64 `json:"progress"`
	Label    string  `json:"label"`
}

// streamFeed subscribes to hub with f and writes every snapshot as a
// server-sent event until the client goes away or the hub closes. With
// withProgress set, cosmetic "progress" events are interleaved until the
// bar is full.
func streamFeed(c *fiber.Ctx, hub *feed.Hub, f feed.Filter, withProgress bool, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := hub.Subscribe(ctx, f)
	if err != nil {
		cancel()
		return respondError(c, logger, "Could not open order feed", err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger.Debug("feed stream opened", slog.String("filter", f.String()))
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		var ticks chan float64
		if withProgress {
			ticks = make(chan float64, 1)
			go feed.NewProgress(progressStep).Run(ctx, progressInterval, func(v float64) {
				select {
				case ticks <- v:
				default:
				}
			})
		}
		var remote models.OrderStatus

		for {
			select {
			case v := <-ticks:
				if err := writeEvent(w, "progress", progressEvent{Progress: v, Label: feed.DisplayLabel(v, remote)}); err != nil {
					return
				}
			case snap, ok := <-sub.C():
				if !ok {
					return
				}
				if o := snap.Order(); o != nil {
					remote = o.Status
				}
				if err := writeEvent(w, "snapshot", newSnapshotEvent(snap)); err != nil {
					logger.Debug("feed stream closed", slog.String("filter", f.String()), slog.Any("error", err))
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

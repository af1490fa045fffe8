package controllers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncCall struct {
	Kind string
	ID   uint
}

type channelSyncer struct {
	calls chan syncCall
}

func newChannelSyncer() *channelSyncer {
	return &channelSyncer{calls: make(chan syncCall, 8)}
}

func (s *channelSyncer) OnBookingCreated(_ context.Context, id uint) {
	s.calls <- syncCall{Kind: "created", ID: id}
}

func (s *channelSyncer) OnBookingUpdated(_ context.Context, id uint) {
	s.calls <- syncCall{Kind: "updated", ID: id}
}

func (s *channelSyncer) OnBookingCancelled(_ context.Context, id uint) {
	s.calls <- syncCall{Kind: "cancelled", ID: id}
}

func (s *channelSyncer) wait(t *testing.T) syncCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync dispatch")
		return syncCall{}
	}
}

func newHookTestApp(syncer BookingSyncer) *fiber.App {
	InitializeHookController(syncer)
	app := fiber.New()
	app.Post("/hooks/booking/created/:id", HandleBookingCreated)
	app.Post("/hooks/booking/updated/:id", HandleBookingUpdated)
	app.Post("/hooks/booking/cancelled/:id", HandleBookingCancelled)
	return app
}

func TestHookDispatchesByKind(t *testing.T) {
	syncer := newChannelSyncer()
	app := newHookTestApp(syncer)

	for _, kind := range []string{"created", "updated", "cancelled"} {
		resp, err := app.Test(httptest.NewRequest("POST", "/hooks/booking/"+kind+"/42", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

		call := syncer.wait(t)
		assert.Equal(t, kind, call.Kind)
		assert.Equal(t, uint(42), call.ID)
	}
}

func TestHookRejectsBadBookingID(t *testing.T) {
	syncer := newChannelSyncer()
	app := newHookTestApp(syncer)

	for _, id := range []string{"0", "-5", "abc"} {
		resp, err := app.Test(httptest.NewRequest("POST", "/hooks/booking/created/"+id, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "id %q", id)
	}

	select {
	case call := <-syncer.calls:
		t.Fatalf("no dispatch expected, got %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHookWithoutEngineReturnsUnavailable(t *testing.T) {
	app := newHookTestApp(nil)

	resp, err := app.Test(httptest.NewRequest("POST", "/hooks/booking/created/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

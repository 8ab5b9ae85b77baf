package chat

import (
	"testing"
	"time"

	"github.com/complydesk/chat-server/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_queueFrame(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerFrame, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueFrame(&ServerFrame{Type: FrameMessage})
		assert.True(t, res, "expected queueFrame to return true when buffer is not full")

		select {
		case frame := <-c.send:
			assert.NotNil(t, frame, "expected a frame to be queued")
		default:
			t.Error("expected a frame to be queued, but none was")
		}
	})

	t.Run("buffer full", func(t *testing.T) {
		c := &Client{
			Id:   "client-a",
			send: make(chan *ServerFrame, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerFrame{Type: FrameMessage} // pre-fill to simulate a full buffer
		res := c.queueFrame(&ServerFrame{Type: FrameMessage})
		assert.False(t, res, "expected queueFrame to return false when buffer is full")
	})
}

func Test_serializeFrame(t *testing.T) {
	frame := NewSystemMessageFrame("maintenance at noon")

	expected := `{"type":"system_message","data":"maintenance at noon","timestamp":"` +
		frame.Timestamp.Format(time.RFC3339Nano) + `"}`

	bytes, err := serializeFrame(frame)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized frame to match the wire format")
}

func Test_Close(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.Close()

	select {
	case <-c.stop:
		// closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}

	assert.NotPanics(t, c.Close, "expected Close to be safe to call twice")
}

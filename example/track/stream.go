package main

import (
	"log/slog"
	"net/http"
	"sync"
)

// frameHub fans the latest annotated JPEG frame out to connected stream
// clients.  Slow clients drop frames rather than holding up tracking
type frameHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// newFrameHub returns an empty hub
func newFrameHub() *frameHub {
	return &frameHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// subscribe registers a client and returns its frame channel
func (h *frameHub) subscribe() chan []byte {

	ch := make(chan []byte, 2)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

// unsubscribe removes a client
func (h *frameHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// publish sends buf to every client with room in its buffer
func (h *frameHub) publish(buf []byte) {

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- buf:
		default:
		}
	}
}

// active reports if any client is connected
func (h *frameHub) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients) > 0
}

// streamHandler serves the annotated video as an MJPEG stream
func streamHandler(hub *frameHub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		log.Info("New client connection established", "remote", r.RemoteAddr)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

		frames := hub.subscribe()
		defer hub.unsubscribe(frames)

		flusher, _ := w.(http.Flusher)

		for {
			select {
			case <-r.Context().Done():
				log.Info("Client disconnected", "remote", r.RemoteAddr)
				return

			case buf := <-frames:
				w.Write([]byte("--frame\r\n"))
				w.Write([]byte("Content-Type: image/jpeg\r\n\r\n"))
				w.Write(buf)
				w.Write([]byte("\r\n"))

				if flusher != nil {
					flusher.Flush()
				}
			}
		}
	}
}

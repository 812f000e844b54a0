// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/kforge/codeforge/pkg/event"
)

// streamEvents writes ch to w as line-delimited SSE records shaped
// {type, ...payload}, per spec.md §6's event wire format, until ch
// closes, the request context is cancelled, or a terminal event is
// written.
func streamEvents(w http.ResponseWriter, r *http.Request, ch <-chan event.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := encodeEvent(ev)
			if err == nil {
				_, _ = w.Write([]byte("data: "))
				_, _ = w.Write(data)
				_, _ = w.Write([]byte("\n\n"))
				flusher.Flush()
			}
			if event.IsTerminal(ev.Kind) {
				return
			}
		}
	}
}

// encodeEvent flattens an event's payload fields alongside "type", per
// spec.md's `{type, ...payload}` wire shape.
func encodeEvent(ev event.Event) ([]byte, error) {
	record := map[string]any{
		"type":      string(ev.Kind),
		"task_id":   ev.TaskID,
		"seq":       ev.Seq,
		"timestamp": ev.Timestamp,
	}

	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			record[k] = v
		}
	}

	return json.Marshal(record)
}

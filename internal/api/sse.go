package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/tripmesh/core"
)

const completeFrame = "event: complete\ndata: {}\n\n"

func writeSSE(w io.Writer, event, data string) error {
	if event == "" {
		_, err := fmt.Fprintf(w, "data: %s\n\n", data)
		return err
	}
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// writeTurnEvent frames ev. Error events are tagged with the error event
// type; every other step is an unnamed data frame.
func writeTurnEvent(w io.Writer, ev core.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode turn event: %w", err)
	}
	if ev.Status == core.StatusError {
		return writeSSE(w, "error", string(data))
	}
	return writeSSE(w, "", string(data))
}

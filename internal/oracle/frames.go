package oracle

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var sseDone = []byte("[DONE]")

// readFrames calls handle for every complete line of a streamed body. A
// partial line is held until the rest of it arrives; a final line without a
// newline is delivered at EOF. Blank lines are skipped. handle returns
// true to stop reading.
func readFrames(r io.Reader, handle func(frame []byte) (bool, error)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
			if frame := bytes.TrimSpace(line); len(frame) > 0 {
				stop, herr := handle(frame)
				if herr != nil {
					return herr
				}
				if stop {
					return nil
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// readSSE is readFrames for server-sent events. Only data fields are passed
// to handle; the [DONE] sentinel ends the stream.
func readSSE(r io.Reader, handle func(data []byte) error) error {
	return readFrames(r, func(frame []byte) (bool, error) {
		data, ok := bytes.CutPrefix(frame, []byte("data:"))
		if !ok {
			return false, nil
		}
		data = bytes.TrimSpace(data)
		if bytes.Equal(data, sseDone) {
			return true, nil
		}
		return false, handle(data)
	})
}

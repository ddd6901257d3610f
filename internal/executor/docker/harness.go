package docker

import (
	"bufio"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/sakif/jsmemes/internal/executor"
)

//go:embed harness.js
var harnessScript string

// harnessEnv is the environment handed to `node -e harnessScript`. The
// snippet travels base64 encoded so newlines and quotes survive intact.
func harnessEnv(code string, cfg Config) []string {
	return []string{
		"SNIPPET_B64=" + base64.StdEncoding.EncodeToString([]byte(code)),
		"SNIPPET_MAX_DELAY_MS=" + strconv.FormatInt(cfg.MaxDeferredDelay.Milliseconds(), 10),
		"SNIPPET_TIMEOUT_MS=" + strconv.FormatInt(cfg.Timeout.Milliseconds(), 10),
	}
}

// harnessMessage is one line of harness output.
type harnessMessage struct {
	Kind string `json:"kind"` // "event" or "result"

	// kind=event
	Type string   `json:"type"`
	Args []string `json:"args"`

	// kind=result
	Success     bool   `json:"success"`
	Result      string `json:"result"`
	Error       string `json:"error"`
	Syntax      bool   `json:"syntax"`
	Interrupted bool   `json:"interrupted"`
}

// outcome converts a result line into what Execute reports. A nil error
// means the body ran; value is its formatted return value.
func (m harnessMessage) outcome() (value string, err error) {
	switch {
	case m.Success:
		return m.Result, nil
	case m.Syntax:
		return "", &executor.SyntaxError{Message: m.Error}
	case m.Interrupted:
		return "", fmt.Errorf("%w: %s", executor.ErrInterrupted, m.Error)
	default:
		return "", fmt.Errorf("sandbox failed: %s", m.Error)
	}
}

func channelOf(t string) (executor.Channel, bool) {
	switch ch := executor.Channel(t); ch {
	case executor.ChannelLog, executor.ChannelError, executor.ChannelWarn:
		return ch, true
	}
	return "", false
}

// readHarness consumes harness output until EOF. Events go to onEvent in
// order; the first result line goes to onResult. Lines that are not harness
// messages (node warnings, a snippet writing to stdout some other way) are
// skipped.
func readHarness(r io.Reader, onEvent func(executor.Channel, []string), onResult func(harnessMessage)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	seenResult := false
	for sc.Scan() {
		var msg harnessMessage
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			continue
		}
		switch msg.Kind {
		case "event":
			if ch, ok := channelOf(msg.Type); ok {
				if msg.Args == nil {
					msg.Args = []string{}
				}
				onEvent(ch, msg.Args)
			}
		case "result":
			if !seenResult {
				seenResult = true
				onResult(msg)
			}
		}
	}
	return sc.Err()
}

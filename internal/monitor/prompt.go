// Package monitor offers to open the broker management page in a browser.
package monitor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Question is printed before reading the answer.
const Question = "Would you like to monitor RabbitMQ queues? y or n "

// OpenFunc opens url in a browser.
type OpenFunc func(url string) error

// Offer asks the question on out, reads one line from in and calls open
// with url if the answer is "y" (case-insensitive). It reports whether the
// page was opened. End of input counts as "n".
func Offer(in io.Reader, out io.Writer, url string, open OpenFunc) (bool, error) {
	if _, err := fmt.Fprint(out, Question); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	fmt.Fprintln(out)

	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return false, nil
	}
	if err := open(url); err != nil {
		return false, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return true, nil
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// DecisionPromptWithContext prints label, reads one line and returns its
// first character lowercased ("y", "n", "a", "q", ...). EOF maps to "q".
// A cancelled context wins over pending input.
func DecisionPromptWithContext(ctx context.Context, reader *bufio.Reader, label string) (string, error) {
	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		fmt.Print(label)

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				inputChan <- "q"
			} else {
				errChan <- fmt.Errorf("error reading input: %w", err)
			}
			return
		}

		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			inputChan <- ""
			return
		}
		inputChan <- line[:1]
	}()

	select {
	case <-ctx.Done():
		fmt.Println()
		return "", ctx.Err()
	case err := <-errChan:
		return "", err
	case input := <-inputChan:
		return input, nil
	}
}

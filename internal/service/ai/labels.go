package ai

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Labels maps class ids to names, one name per line in the labels file.
type Labels []string

// LoadLabels reads a labels file. Blank lines keep their index so ids stay aligned.
func LoadLabels(path string) (Labels, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer file.Close()

	var labels Labels
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return labels, nil
}

// Name returns the label for id, or the id itself when unnamed.
func (l Labels) Name(id int) string {
	if id >= 0 && id < len(l) && l[id] != "" {
		return l[id]
	}
	return strconv.Itoa(id)
}

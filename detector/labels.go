package detector

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads the class names a Model was trained on from the given
// text file.  It should contain one label per line, blank lines are skipped
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file: %w", err)
	}

	return labels, nil
}

// LabelFor returns the label for class id, or a numbered placeholder when
// the id is outside of the label list
func LabelFor(labels []string, id int) string {

	if id >= 0 && id < len(labels) {
		return labels[id]
	}

	return fmt.Sprintf("class_%d", id)
}

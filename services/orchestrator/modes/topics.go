package modes

import "fmt"

// quickTopics are the one-click topic suggestions offered to moderators.
var quickTopics = []string{
	"Consciousness in AI",
	"Mars Settlement Ethics",
	"Quantum Internet Future",
	"Digital Art Evolution",
}

// Topics returns the quick topic suggestions in display order.
func Topics() []string {
	return append([]string(nil), quickTopics...)
}

// Topic returns the n-th quick topic, counting from 1.
func Topic(n int) (string, error) {
	if n < 1 || n > len(quickTopics) {
		return "", fmt.Errorf("topic %d out of range 1-%d", n, len(quickTopics))
	}
	return quickTopics[n-1], nil
}

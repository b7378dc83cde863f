package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedIdentifier reports a composite identifier that does not split
// into exactly three components with visible content.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// Identifier is a decomposed cluster/plot/subplot identifier.
type Identifier struct {
	Cluster string
	Plot    string
	Subplot string
}

// Decompose splits id on delim into cluster, plot, and subplot.
func Decompose(id, delim string) (Identifier, error) {
	if delim == "" {
		return Identifier{}, fmt.Errorf("%w: empty delimiter", ErrMalformedIdentifier)
	}
	parts := strings.Split(id, delim)
	if len(parts) != 3 {
		return Identifier{}, fmt.Errorf("%w: %q has %d components, want 3", ErrMalformedIdentifier, id, len(parts))
	}
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			return Identifier{}, fmt.Errorf("%w: %q has a blank %s component", ErrMalformedIdentifier, id, componentNames[i])
		}
	}
	return Identifier{Cluster: parts[0], Plot: parts[1], Subplot: parts[2]}, nil
}

var componentNames = [3]string{"cluster", "plot", "subplot"}

// Join rebuilds the composite identifier.
func (i Identifier) Join(delim string) string {
	return i.Cluster + delim + i.Plot + delim + i.Subplot
}

// PlotIdentifier returns the composite plot identifier "cluster<delim>plot".
func PlotIdentifier(cluster, plot, delim string) string {
	return cluster + delim + plot
}

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// ContentHash computes a content-addressable hash for a channel table.
// The hash covers the assignments in slot order, so two presets with the
// same assignments hash alike regardless of the order they were given in.
func ContentHash(channels []protocol.RacerChannel) string {
	sorted := append([]protocol.RacerChannel(nil), channels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Racer < sorted[j].Racer })

	parts := make([]string, len(sorted))
	for i, rc := range sorted {
		parts[i] = fmt.Sprintf("%d=%s", rc.Racer, rc.Channel)
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// ShortHash returns a shortened version of the hash for display purposes.
func ShortHash(fullHash string) string {
	// Remove "sha256:" prefix and take first 12 chars
	if len(fullHash) > 19 {
		return fullHash[7:19]
	}
	return fullHash
}

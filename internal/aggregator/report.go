package aggregator

import (
	"fmt"
	"io"
	"sort"
)

// Mode selects which slice of the sorted client table Report prints, per
// spec.md §4.9.
type Mode int

const (
	ModeAll Mode = iota
	ModeLowestN
	ModeHighestN
)

// ReportOptions configures Report's output per spec.md §4.9 / §6's CLI
// surface (`-t N`, `-h N`, `-s`).
type ReportOptions struct {
	Mode       Mode
	N          int
	RawSeconds bool
}

// SortedClients returns every Client in the table ordered ascending by
// total connected time, then applies the requested -t/-h slice, per
// spec.md §4.9.
func SortedClients(ct *ClientTable, opts ReportOptions) []*Client {
	all := ct.All()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].TotalConnectedSeconds < all[j].TotalConnectedSeconds
	})

	switch opts.Mode {
	case ModeLowestN:
		if opts.N < len(all) {
			all = all[:opts.N]
		}
	case ModeHighestN:
		if opts.N < len(all) {
			all = all[len(all)-opts.N:]
		}
		reverse(all)
	}
	return all
}

func reverse(cs []*Client) {
	for i, j := 0, len(cs)-1; i < j; i, j = i+1, j-1 {
		cs[i], cs[j] = cs[j], cs[i]
	}
}

// FormatRow renders one output line per spec.md §4.9: either raw seconds or
// a "<D>d <H>h <M>m <S>s" decomposition, a tab, the client's name, a
// newline.
func FormatRow(c *Client, rawSeconds bool) string {
	if rawSeconds {
		return fmt.Sprintf("%d\t%s\n", c.TotalConnectedSeconds, c.Name)
	}
	total := c.TotalConnectedSeconds
	d := total / 86400
	total %= 86400
	h := total / 3600
	total %= 3600
	m := total / 60
	s := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds\t%s\n", d, h, m, s, c.Name)
}

// WriteReport writes one formatted row per client to w, in the order given.
func WriteReport(w io.Writer, clients []*Client, rawSeconds bool) error {
	for _, c := range clients {
		if _, err := io.WriteString(w, FormatRow(c, rawSeconds)); err != nil {
			return err
		}
	}
	return nil
}

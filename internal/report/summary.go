package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// WriteSummary prints a human-readable overview of r: the outspend counts,
// then one row per linked spender.
func WriteSummary(w io.Writer, r *domain.MatchReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "CoinJoin\t%s\n", r.CoinJoin)
	fmt.Fprintf(tw, "Spent outputs\t%d\n", r.SpentOutputs)
	fmt.Fprintf(tw, "Unspent outputs\t%d\n", r.UnspentOutputs)
	fmt.Fprintf(tw, "Linked spenders\t%d\n", len(r.Matches))
	fmt.Fprintf(tw, "Linked value\t%s\n", r.LinkedValue().BTC())

	if len(r.Matches) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SPENDER\tADDRESSES\tTOTAL\tOUTSPENDS\tNOTE")
		for _, txid := range r.Txids() {
			e := r.Matches[txid]
			note := ""
			if e.PartialMatch {
				note = fmt.Sprintf("matched %d inputs", e.MatchedInputs)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", txid, len(e.Addresses), e.Total.BTC(), e.OutspendCount, note)
		}
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(tw)
		for _, d := range r.Diagnostics {
			fmt.Fprintf(tw, "! %s\t%s\n", d.Kind, d.Detail)
		}
	}
	return tw.Flush()
}

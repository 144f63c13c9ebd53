// Package pricelog extracts structured pricing events from the console
// transcripts of a branch-and-price solver (GCG on top of SCIP).
//
// Quick start:
//
//	snaps, err := pricelog.ParseFile(ctx, "runs/bpp.out.gz",
//	    pricelog.WithRoundRange(1, 50),
//	    pricelog.WithBestBound())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range snaps {
//	    fmt.Println(s.Info.InstanceName, s.Info.Status, len(s.Events))
//	}
//
// Every instance found in a transcript yields exactly one Snapshot, in
// transcript order. Malformed content never fails a parse; it shows up as
// an Abrupt or Truncated status and as warnings on the configured logger.
package pricelog

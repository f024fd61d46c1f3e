/*
Package testutil provides test fixtures for mamchan packages.

# Channel Generators

Channels are built from a small default configuration customised with options:

	ch, err := testutil.NewTestChannel(
	    testutil.WithEpochSize(4),
	    testutil.WithGrowth(protocol.DoublingGrowth{}),
	)

The default seed is fixed, so two channels built with the same options
produce the same roots.

# Transports

RecordingTransport and FlakyTransport wrap any protocol.Transport:

	store := &ledger.StoreTransport{Store: ledger.NewMemoryStore()}
	rec := testutil.NewRecordingTransport(store)
	flaky := testutil.NewFlakyTransport(rec, 1, 0) // first publish fails

This package is intended for tests only.
*/
package testutil

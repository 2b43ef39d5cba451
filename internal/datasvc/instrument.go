package datasvc

import (
	"context"

	"wastechem.org/internal/obs"
)

type instrumented struct {
	next Tables
}

// Instrument wraps t so every call is counted in datasvc_calls_total.
func Instrument(t Tables) Tables {
	if t == nil {
		return nil
	}
	return instrumented{next: t}
}

func (i instrumented) Select(ctx context.Context, q Query) (Result, error) {
	res, err := i.next.Select(ctx, q)
	obs.ObserveDataCall("select", q.Table, err)
	return res, err
}

func (i instrumented) Insert(ctx context.Context, table string, row Row) (Row, error) {
	out, err := i.next.Insert(ctx, table, row)
	obs.ObserveDataCall("insert", table, err)
	return out, err
}

func (i instrumented) Update(ctx context.Context, table string, patch Row, filters ...Filter) ([]Row, error) {
	out, err := i.next.Update(ctx, table, patch, filters...)
	obs.ObserveDataCall("update", table, err)
	return out, err
}

func (i instrumented) Delete(ctx context.Context, table string, filters ...Filter) ([]Row, error) {
	out, err := i.next.Delete(ctx, table, filters...)
	obs.ObserveDataCall("delete", table, err)
	return out, err
}

func (i instrumented) Ping(ctx context.Context) error {
	err := i.next.Ping(ctx)
	obs.ObserveDataCall("ping", "", err)
	return err
}

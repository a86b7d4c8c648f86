// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package metadata

import (
	"context"
	"time"

	"github.com/smyte-run/respkv/pkg/log"
)

type queryKey struct{}

// hooks satisfies sqlhooks.Hooks, logging every query issued against the
// metadata catalog at Debug level along with its elapsed time.
type hooks struct{}

func (hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("metadata: query %s %q", query, args)
	return context.WithValue(ctx, queryKey{}, time.Now()), nil
}

func (hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryKey{}).(time.Time); ok {
		log.Debugf("metadata: query took %s", time.Since(begin))
	}
	return ctx, nil
}

package publish

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/macro-rover/navigator/services/navigation"
)

type multi []navigation.Publisher

// Multi fans every payload out to all non-nil publishers. It returns nil if there are none.
func Multi(publishers ...navigation.Publisher) navigation.Publisher {
	m := multi(lo.Filter(publishers, func(p navigation.Publisher, _ int) bool {
		return p != nil
	}))
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m multi) Publish(ctx context.Context, payload navigation.Payload) error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Publish(ctx, payload))
	}
	return err
}

func (m multi) Close() error {
	var err error
	for _, p := range m {
		err = multierr.Append(err, p.Close())
	}
	return err
}

// Package service runs a group of long-living parts of the server
// and stops them in reverse order.
package service

import (
	"context"
	"errors"
	"fmt"
)

type Service interface{}

type RunnableService interface {
	Service

	Run()
	Shutdown(ctx context.Context) error
}

type Group struct {
	list []Service
}

func (g *Group) Add(services ...Service) { g.list = append(g.list, services...) }

func (g *Group) Start() {
	for _, s := range g.list {
		if v, ok := s.(RunnableService); ok {
			v.Run()
		}
	}
}

// Shutdown stops the services in reverse order and
// joins every failure except cancellation.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(g.list) - 1; i >= 0; i-- {
		s := g.list[i]
		if v, ok := s.(RunnableService); ok {
			if err := v.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, fmt.Errorf("failed to stop [%v]: %w", s, err))
			}
		}
	}
	return errors.Join(errs...)
}

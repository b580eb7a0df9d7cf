package app

import "context"

type nopLog struct{}

func (nopLog) Infof(context.Context, string, ...any)  {}
func (nopLog) Warnf(context.Context, string, ...any)  {}
func (nopLog) Errorf(context.Context, string, ...any) {}

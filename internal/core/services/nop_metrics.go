package services

import "vlsnet/internal/core/ports"

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()     {}
func (nopMetrics) ConnectionClosed()     {}
func (nopMetrics) MessageBroadcast(int)  {}
func (nopMetrics) MessageDropped(string) {}
func (nopMetrics) PersistFailed()        {}
func (nopMetrics) SubscriberPruned()     {}
func (nopMetrics) LoginOutcome(string)   {}
func (nopMetrics) LockoutTriggered()     {}

// NopMetrics satisfies both metrics ports and records nothing.
var NopMetrics interface {
	ports.ChatMetrics
	ports.AuthMetrics
} = nopMetrics{}

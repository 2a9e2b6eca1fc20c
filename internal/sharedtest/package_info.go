// Package sharedtest contains test helpers that are used by more than one package.
package sharedtest

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-goroutine readiness event loop.
//
// One goroutine, locked to its OS thread, owns an epoll instance, the
// registration table and every listener callback. Other goroutines talk to it
// only through Submit. Registrations, interest changes, connects and
// disconnects are all tasks executed on the loop.
package reactor

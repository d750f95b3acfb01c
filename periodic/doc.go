// Package periodic drives one or more pgcache.Host values on a schedule.
//
// pgcache.Cache intentionally does not schedule itself: the design names the
// scheduler an external collaborator, responsible only for calling Update on
// a cadence and never letting two Update calls for the same cache overlap.
// This package's tickerScheduler is one concrete implementation of that
// contract; a host embedding pgcache differently (e.g. driven by a cron
// library or a component framework's own background-task registry) can
// satisfy periodic.Scheduler without using tickerScheduler at all.
package periodic

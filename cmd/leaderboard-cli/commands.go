package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"leaderboardkit/bootstrap"
	"leaderboardkit/core"
	"leaderboardkit/creator"
)

var errUsage = errors.New("usage")

// queryFlags are the listing filters shared by the list command.
type queryFlags struct {
	order  string
	skip   int
	take   int
	user   string
	period string
	extra  string
}

func (q queryFlags) sortOrder() (core.SortOrder, error) {
	switch q.order {
	case "", "default":
		return core.SortDefault, nil
	case "asc":
		return core.SortAscending, nil
	case "desc":
		return core.SortDescending, nil
	}
	return core.SortDefault, fmt.Errorf("unknown order %q (want default, asc or desc)", q.order)
}

func (q queryFlags) searchQuery() (core.SearchQuery, error) {
	periods := map[string]core.TimePeriod{
		"":      core.AllTime,
		"all":   core.AllTime,
		"today": core.Today,
		"week":  core.ThisWeek,
		"month": core.ThisMonth,
		"year":  core.ThisYear,
	}
	p, ok := periods[q.period]
	if !ok {
		return core.SearchQuery{}, fmt.Errorf("unknown period %q", q.period)
	}
	return core.SearchQuery{Skip: q.skip, Take: q.take, Username: q.user, TimePeriod: p}, nil
}

// done receives the outcome of a command exactly once.
type done func(result any, err error)

type command struct {
	usage string
	// needsDevice commands wait for the device identifier before running.
	needsDevice bool
	run         func(ctx context.Context, c *creator.Creator, q queryFlags, args []string, finish done) error
}

var commands = map[string]command{
	"test": {
		usage: "test",
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			if len(args) != 0 {
				return errUsage
			}
			c.Client.Test(ctx, func(ok bool) { finish(map[string]bool{"reachable": ok}, nil) })
			return nil
		},
	},
	"device-id": {
		usage: "device-id",
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			if len(args) != 0 {
				return errUsage
			}
			c.Authorizer.RequestDeviceID(ctx, func(id string, err error) {
				finish(map[string]string{"device_id": id}, err)
			})
			return nil
		},
	},
	"list": {
		usage: "list [KEY]",
		run: func(ctx context.Context, c *creator.Creator, q queryFlags, args []string, finish done) error {
			order, err := q.sortOrder()
			if err != nil {
				return err
			}
			query, err := q.searchQuery()
			if err != nil {
				return err
			}
			onSuccess := func(entries []core.Entry) { finish(entries, nil) }
			onError := func(err error) { finish(nil, err) }
			switch len(args) {
			case 0:
				c.Client.GetMyLeaderboard(ctx, order, query, onSuccess, onError)
			case 1:
				c.Client.GetLeaderboard(ctx, args[0], order, query, onSuccess, onError)
			default:
				return errUsage
			}
			return nil
		},
	},
	"upload": {
		usage:       "upload [KEY USERNAME] SCORE",
		needsDevice: true,
		run: func(ctx context.Context, c *creator.Creator, q queryFlags, args []string, finish done) error {
			if len(args) != 1 && len(args) != 3 {
				return errUsage
			}
			score, err := strconv.Atoi(args[len(args)-1])
			if err != nil {
				return fmt.Errorf("score must be an integer: %w", err)
			}
			onSuccess := func(ok bool) { finish(map[string]bool{"uploaded": ok}, nil) }
			onError := func(err error) { finish(nil, err) }
			if len(args) == 1 {
				c.Client.UploadMyEntry(ctx, score, q.extra, onSuccess, onError)
			} else {
				c.Client.UploadEntry(ctx, args[0], args[1], score, q.extra, onSuccess, onError)
			}
			return nil
		},
	},
	"entry": {
		usage:       "entry [KEY]",
		needsDevice: true,
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			onSuccess := func(e core.Entry) { finish(e, nil) }
			onError := func(err error) { finish(nil, err) }
			switch len(args) {
			case 0:
				c.Client.GetMyPersonalEntry(ctx, onSuccess, onError)
			case 1:
				c.Client.GetPersonalEntry(ctx, args[0], onSuccess, onError)
			default:
				return errUsage
			}
			return nil
		},
	},
	"count": {
		usage: "count [KEY]",
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			onSuccess := func(n int) { finish(map[string]int{"count": n}, nil) }
			onError := func(err error) { finish(nil, err) }
			switch len(args) {
			case 0:
				c.Client.GetMyEntryCount(ctx, onSuccess, onError)
			case 1:
				c.Client.GetEntryCount(ctx, args[0], onSuccess, onError)
			default:
				return errUsage
			}
			return nil
		},
	},
	"delete": {
		usage:       "delete [KEY]",
		needsDevice: true,
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			onSuccess := func(ok bool) { finish(map[string]bool{"deleted": ok}, nil) }
			onError := func(err error) { finish(nil, err) }
			switch len(args) {
			case 0:
				c.Client.DeleteMyEntry(ctx, onSuccess, onError)
			case 1:
				c.Client.DeleteEntry(ctx, args[0], onSuccess, onError)
			default:
				return errUsage
			}
			return nil
		},
	},
	"reset": {
		usage: "reset",
		run: func(ctx context.Context, c *creator.Creator, _ queryFlags, args []string, finish done) error {
			if len(args) != 0 {
				return errUsage
			}
			if c.Authorizer.Mode() == bootstrap.SaveUnhandled {
				return errors.New("reset needs save mode persistent or memory")
			}
			c.Client.ResetPlayer(ctx, func() {
				finish(map[string]string{"device_id": c.Session.DeviceID()}, nil)
			})
			return nil
		},
	},
}

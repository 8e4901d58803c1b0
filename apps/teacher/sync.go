package main

import (
	"context"

	"github.com/ecolehub/backend/core/note"
)

func (cli *commandLine) printSyncResult(verb string, res note.SyncResult) {
	cli.printf("%s %d, failed %d\n", verb, len(res.SyncedNotes), len(res.FailedNotes))
	for _, e := range res.Errors {
		cli.printf("  %s: %s\n", e.NoteID, e.Error)
	}
}

func (cli *commandLine) publish(ctx context.Context, args []string) error {
	cmd := cli.flagSet("publish")
	keepLocal := cmd.Bool("keep-local", false, "Keep the published notes on the device.")
	if err := parse(cmd, args); err != nil {
		return err
	}

	res, err := cli.syncer.PublishNotes(ctx, note.PublishOptions{
		NoteIDs:   cmd.Args(),
		KeepLocal: *keepLocal,
		OnProgress: func(done, total int) {
			cli.printf("[%d/%d] publishing\n", done, total)
		},
	})
	if err != nil {
		return err
	}
	cli.printSyncResult("published", res)
	return nil
}

func (cli *commandLine) sync(ctx context.Context) error {
	res, err := cli.syncer.ProcessSyncQueue(ctx)
	if err != nil {
		return err
	}
	cli.printSyncResult("synced", res)
	return nil
}

func (cli *commandLine) status(ctx context.Context) error {
	unpublished, err := cli.store.CountUnpublished(ctx)
	if err != nil {
		return err
	}
	drafts, err := cli.store.CountDrafts(ctx, note.Scope{SchoolID: cli.opts.schoolID, TeacherID: cli.opts.teacherID})
	if err != nil {
		return err
	}
	pending, err := cli.syncer.PendingSyncCount(ctx)
	if err != nil {
		return err
	}
	cli.printf("unpublished notes: %d\ndraft notes: %d\npending sync items: %d\n", unpublished, drafts, pending)
	return nil
}

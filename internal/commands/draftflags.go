package commands

import (
	"flag"
	"time"

	"taskboard/internal/task"
)

// optString is a string flag that remembers whether it was given.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

// draftFlags are the task field flags shared by add and edit.
type draftFlags struct {
	title    optString
	desc     optString
	status   optString
	priority optString
	assignee optString
	due      optString
}

func (f *draftFlags) register(fs *flag.FlagSet, withTitle bool) {
	*f = draftFlags{}
	if withTitle {
		fs.Var(&f.title, "title", "")
	}
	fs.Var(&f.desc, "desc", "")
	fs.Var(&f.desc, "d", "")
	fs.Var(&f.status, "status", "")
	fs.Var(&f.status, "s", "")
	fs.Var(&f.priority, "priority", "")
	fs.Var(&f.priority, "p", "")
	fs.Var(&f.assignee, "assignee", "")
	fs.Var(&f.assignee, "a", "")
	fs.Var(&f.due, "due", "")
}

// apply overwrites the fields of d whose flags were given. Moving into the
// completed status stamps CompletedAt with now; leaving it clears it.
func (f *draftFlags) apply(d *task.Draft, now time.Time) error {
	if f.title.set {
		d.Title = f.title.value
	}
	if f.desc.set {
		d.Description = f.desc.value
	}
	if f.assignee.set {
		d.Assignee = f.assignee.value
	}
	if f.due.set {
		d.DueDate = f.due.value
	}
	if f.priority.set {
		p, err := task.ParsePriority(f.priority.value)
		if err != nil {
			return err
		}
		d.Priority = p
	}
	if f.status.set {
		st, err := task.ParseStatus(f.status.value)
		if err != nil {
			return err
		}
		setStatus(d, st, now)
	}
	return nil
}

// setStatus changes the status and keeps CompletedAt consistent with it.
func setStatus(d *task.Draft, st task.Status, now time.Time) {
	switch {
	case st == task.StatusCompleted && d.Status != task.StatusCompleted:
		d.CompletedAt = &now
	case st != task.StatusCompleted:
		d.CompletedAt = nil
	}
	d.Status = st
}

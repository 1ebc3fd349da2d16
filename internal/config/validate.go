package config

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error identifies a configuration problem by page and field.
type Error struct {
	Page  string
	Field string
	Msg   string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Page != "" {
		fmt.Fprintf(&b, "page %q: ", e.Page)
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	return b.String()
}

type errorList struct {
	errs []*Error
}

func (l *errorList) add(page, field, msg string) {
	l.errs = append(l.errs, &Error{Page: page, Field: field, Msg: msg})
}

// join returns the collected errors sorted by page and field, or nil.
func (l *errorList) join() error {
	if len(l.errs) == 0 {
		return nil
	}
	slices.SortStableFunc(l.errs, func(a, b *Error) int {
		return cmp.Or(cmp.Compare(a.Page, b.Page), cmp.Compare(a.Field, b.Field))
	})
	errs := make([]error, len(l.errs))
	for i, e := range l.errs {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// validate checks the page graph. Every dangling page reference is fatal;
// a conditional route list without a default only produces a warning.
func (c *Config) validate() error {
	var l errorList

	if c.Version != SupportedVersion {
		l.add("", "version", fmt.Sprintf("unsupported version %q, expected %s", c.Version, SupportedVersion))
	}
	if c.App.Name == "" {
		l.add("", "app.name", "must not be empty")
	}
	if len(c.Pages) == 0 {
		l.add("", "pages", "no pages defined")
	}
	if c.Start == "" {
		l.add("", "start", "must name a page")
	} else if _, ok := c.Pages[c.Start]; !ok {
		l.add("", "start", fmt.Sprintf("start page %q not found", c.Start))
	}

	for _, id := range slices.Sorted(maps.Keys(c.Pages)) {
		p := c.Pages[id]
		if strings.TrimSpace(p.Title) == "" {
			l.add(id, "title", "must not be empty")
		}
		c.validateSource(&l, id, "data", p.Data)
		c.validateView(&l, id, p.View)
		if p.Next != nil {
			for i, r := range p.Next.Rules {
				c.checkTarget(&l, id, fmt.Sprintf("next[%d]", i), r.Target.Page)
			}
			if p.Next.Default != nil {
				c.checkTarget(&l, id, "next", p.Next.Default.Page)
			} else {
				c.Warnings = append(c.Warnings, fmt.Sprintf("page %q: next has no default route", id))
			}
		}
		keys := map[string]bool{}
		for i, a := range p.Actions {
			field := fmt.Sprintf("actions[%d]", i)
			if a.Key == "" {
				l.add(id, field+".key", "must not be empty")
			} else if keys[a.Key] {
				l.add(id, field+".key", fmt.Sprintf("duplicate key %q", a.Key))
			}
			keys[a.Key] = true
			targets := 0
			for _, set := range []bool{a.Command != "", a.HTTP != nil, a.Page != ""} {
				if set {
					targets++
				}
			}
			if targets != 1 {
				l.add(id, field, "must set exactly one of command, http or page")
			}
			if a.Page != "" {
				c.checkTarget(&l, id, field+".page", a.Page)
			}
			if a.HTTP != nil && a.HTTP.URL == "" {
				l.add(id, field+".http.url", "must not be empty")
			}
		}
	}
	return l.join()
}

func (c *Config) checkTarget(l *errorList, page, field, target string) {
	if target == "" {
		l.add(page, field, "target page is empty")
		return
	}
	if _, ok := c.Pages[target]; !ok {
		l.add(page, field, fmt.Sprintf("target page %q not found", target))
	}
}

func (c *Config) validateSource(l *errorList, page, field string, ds DataSource) {
	switch s := ds.Source.(type) {
	case ProcessSource:
		if strings.TrimSpace(s.Command) == "" {
			l.add(page, field+".command", "process source requires a command")
		}
	case NetworkSource:
		if strings.TrimSpace(s.URL) == "" {
			l.add(page, field+".url", "network source requires a url")
		}
	case StreamSource:
		if strings.TrimSpace(s.Command) == "" && strings.TrimSpace(s.Websocket) == "" {
			l.add(page, field, "stream source requires a command or websocket")
		}
	case CompositeSource:
		if len(s.Sources) == 0 {
			l.add(page, field+".sources", "must not be empty")
		}
		ids := map[string]bool{}
		for i, sub := range s.Sources {
			subField := fmt.Sprintf("%s.sources[%d]", field, i)
			switch {
			case sub.ID == "":
				l.add(page, subField+".id", "must not be empty")
			case ids[sub.ID]:
				l.add(page, subField+".id", fmt.Sprintf("duplicate id %q", sub.ID))
			}
			ids[sub.ID] = true
			if _, nested := sub.Data.Source.(CompositeSource); nested {
				l.add(page, subField, "composite sources cannot nest")
				continue
			}
			if _, stream := sub.Data.Source.(StreamSource); stream {
				l.add(page, subField, "stream sources cannot be composed")
				continue
			}
			c.validateSource(l, page, subField, sub.Data)
		}
	}
}

func (c *Config) validateView(l *errorList, page string, v View) {
	if v.Kind != ViewTable {
		return
	}
	// Tables without columns infer them from the first row.
	if v.Sort != nil && len(v.Columns) > 0 {
		found := slices.ContainsFunc(v.Columns, func(col Column) bool {
			return strings.EqualFold(col.Display, v.Sort.Column) || col.Path == v.Sort.Column
		})
		if !found {
			c.Warnings = append(c.Warnings, fmt.Sprintf("page %q: sort column %q matches no column", page, v.Sort.Column))
		}
	}
}

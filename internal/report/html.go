package report

import (
	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/core"
)

// pageView is what the HTML report template renders. Counts are formatted
// up front; an empty Omitted or Duplicates hides its section.
type pageView struct {
	Before, After, Key string
	Policy             string
	Added              string
	Removed            string
	Changed            string
	Duplicates         string
	Changes            []compare.CellChange
	Omitted            string
	AddedKeys          []string
	RemovedKeys        []string
	DupBefore          []string
	DupAfter           []string
}

// HTML returns the comparison as a standalone HTML page.
func HTML(c *core.Comparison, opts Options) templ.Component {
	return page(newPageView(c, opts))
}

func newPageView(c *core.Comparison, opts Options) pageView {
	res := c.Result
	s := res.Summary()
	changes, omitted := limited(res, opts)
	dups := res.DuplicateKeys()

	v := pageView{
		Before:      c.BeforeName,
		After:       c.AfterName,
		Key:         res.KeyColumn(),
		Policy:      string(res.Policy()),
		Added:       humanize.Comma(int64(s.Added)),
		Removed:     humanize.Comma(int64(s.Removed)),
		Changed:     humanize.Comma(int64(s.Changed)),
		Changes:     changes,
		AddedKeys:   res.AddedKeys(),
		RemovedKeys: res.RemovedKeys(),
		DupBefore:   dups.Before,
		DupAfter:    dups.After,
	}
	if omitted > 0 {
		v.Omitted = humanize.Comma(int64(omitted))
	}
	if s.Duplicates > 0 {
		v.Duplicates = humanize.Comma(int64(s.Duplicates))
	}
	return v
}

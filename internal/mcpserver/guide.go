package mcpserver

// QueryGuide explains how view tools filter, sort and page records.
const QueryGuide = `# Dagaz View Query Guide

Each view (users, organizations, projects, review-documents, payments) keeps
its own session state between tool calls: filters, quick filter, sort, page
and the selected record.

## Filters

All active filters must pass (logical AND):

1. **Text search** (` + "`q`" + `): case-insensitive substring over the view's
   text fields (see list_views).
2. **Categories** (` + "`field`" + ` + ` + "`value`" + `): exact match. Status
   fields ignore case. The value "all" or "" turns a category off.
3. **Date range** (` + "`start`" + `, ` + "`end`" + `, YYYY-MM-DD): both days are
   inclusive. Malformed dates are ignored. Records without a timestamp fail an
   active range.
4. **Preset** (projects only): today, week, month, year or all.

clear_filters restores the unfiltered view.

## Grid

- quick_filter narrows the filtered rows further by any visible column.
- toggle_sort cycles a column through ascending, descending and unsorted.
- set_page is zero-based; a page past the end is clamped.
- export_view writes every filtered row (not just the current page) to the
  export directory as CSV or XLSX.

## Review documents

- download_document saves the .docx to the export directory.
- return_document needs feedback, a .docx (base64 or data URI), or both.
`

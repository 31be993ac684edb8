package mcpserver

// FileFormatContract describes the marks file and export format that LLM
// consumers should follow when preparing an import payload.
const FileFormatContract = `# Marksman File Format

Marks are stored per project in ` + "`" + `<data_dir>/marksman_<key>.json` + "`" + `, where
` + "`" + `<key>` + "`" + ` is the first 8 hex characters of the SHA-256 of the project root.
Exports use the same document with extra metadata.

## Structure

` + "```" + `json
{
  "marks": {
    "handler": {
      "file": "/abs/path/server.go",
      "line": 42,
      "col": 1,
      "text": "func handleRequest(w http.ResponseWriter, r *http.Request) {",
      "description": "optional note",
      "created_at": 1735689600
    }
  },
  "mark_order": ["handler"],
  "version": "1.0",
  "saved_at": "2025-01-01T00:00:00Z",
  "project": "/abs/path"
}
` + "```" + `

## Rules

1. **` + "`" + `marks` + "`" + ` is required** on import. A file without it is rejected.
2. **` + "`" + `mark_order` + "`" + `** lists every name once. Unknown names are dropped and
   missing names are appended in sorted order.
3. **Names** are 1 to 50 characters, contain none of ` + "`" + `< > : " / \ | ? *` + "`" + `, and
   are not Windows device names (CON, PRN, AUX, NUL, COM1-9, LPT1-9).
4. **` + "`" + `line` + "`" + ` and ` + "`" + `col` + "`" + `** are 1-based. ` + "`" + `file` + "`" + ` is an absolute path.
5. **` + "`" + `text` + "`" + `** is the trimmed source line, at most 80 characters.
6. **` + "`" + `created_at` + "`" + `** is Unix seconds.
7. Import payloads may contain ` + "`" + `//` + "`" + ` comments and trailing commas.

## Import strategies

- ` + "`" + `replace` + "`" + `: the payload becomes the whole set, in payload order.
- ` + "`" + `merge` + "`" + ` (default): names already present keep their position and take
  the payload's data; new names are appended in payload order.
`

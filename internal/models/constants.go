package models

const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"

	ContextSeparator = "\n\n---\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`
)

var (
	PromptTemplate = `Answer the question based only on the following context:

%s

---

Answer the question based on the above context: %s
`
)

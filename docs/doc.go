// Package docs provides generated OpenAPI documentation.
//
// Chapterinator API
//
//	@title			Chapterinator API
//	@version		1.0
//	@description	Ebook generation pipeline API: ingest sources, map content, plan chapters, generate and assemble the book.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/Pablogarciag02/ChapterInator2.0
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/chapterinator/serve.go -o . --parseDependency --parseInternal --outputTypes go

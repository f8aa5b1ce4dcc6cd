// Package importers turns ebook files into library books.
//
// # Architecture
//
//	File → epub.Read → epub.Book → Pipeline → entities.Book → BookStore
//
// A format reader produces an epub.Book; the Pipeline maps it onto the
// library entities and stores the book and all chapters in one transaction.
//
// # Adding a New Format
//
//  1. Write a reader that returns *epub.Book (or a similar neutral model)
//  2. Add an importer type with ImportFile/Import methods
//  3. Call Pipeline.Store with the parsed model
package importers

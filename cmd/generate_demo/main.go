// Command generate_demo creates a demo library with excerpts from public domain books.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db] [-audio]
package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/database"
	"github.com/mrlokans/autobooks/internal/database/audio"
	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/database/chapters"
	"github.com/mrlokans/autobooks/internal/database/settings"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/textlines"
	"github.com/mrlokans/autobooks/internal/tts"
)

const defaultDemoDatabasePath = "./demo/demo.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	withAudio := flag.Bool("audio", false, "generate silent mock audio for the first chapter of each book")
	flag.Parse()

	logrus.Infof("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		logrus.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		logrus.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	bookRepo := books.NewRepository(db.DB)
	chapterRepo := chapters.NewRepository(db.DB)

	var created []entities.Book
	for _, book := range publicDomainBooks() {
		if err := bookRepo.Create(&book); err != nil {
			logrus.Errorf("Failed to save book %s: %v", book.Title, err)
			continue
		}
		logrus.Infof("Saved: %s by %s (%d chapters)", book.Title, book.Author, book.NumChapters)
		created = append(created, book)
	}

	// A little reading progress so the library does not look untouched.
	if len(created) > 0 {
		if _, err := chapterRepo.MarkRead(created[0].ID, 1); err != nil {
			logrus.Warnf("Failed to mark chapter read: %v", err)
		}
		if err := bookRepo.SetFavourite(created[0].ID, true); err != nil {
			logrus.Warnf("Failed to mark favourite: %v", err)
		}
	}

	if *withAudio {
		engine := tts.NewMockEngine()
		prefs := settingsstore.New(settings.NewRepository(db.DB))
		gen := generator.New(chapterRepo, audio.NewRepository(db.DB), prefs, engine)
		for _, book := range created {
			result, err := gen.GenerateChapter(context.Background(), book.ID, 1, generator.LogReporter{})
			if err != nil {
				logrus.Errorf("Failed to generate audio for %s: %v", book.Title, err)
				continue
			}
			logrus.Infof("Generated %d lines of audio for %s", result.Lines, book.Title)
		}
	}

	logrus.Info("Demo database generated successfully!")
}

func chapter(number int, title, text string) entities.Chapter {
	return entities.Chapter{
		Number:    number,
		Title:     title,
		Text:      text,
		LineCount: len(textlines.Split(text)),
	}
}

func publicDomainBooks() []entities.Book {
	return []entities.Book{
		{
			Title:  "Meditations",
			Author: "Marcus Aurelius",
			Chapters: []entities.Chapter{
				chapter(1, "Book One", "From my grandfather Verus I learned good morals and the government of my temper.\n"+
					"From the reputation and remembrance of my father, modesty and a manly character.\n"+
					"From my mother, piety and beneficence, and abstinence, not only from evil deeds, but even from evil thoughts."),
				chapter(2, "Book Two", "Begin the morning by saying to thyself, I shall meet with the busy-body, the ungrateful, arrogant, deceitful, envious, unsocial.\n"+
					"All these things happen to them by reason of their ignorance of what is good and evil."),
			},
		},
		{
			Title:  "Pride and Prejudice",
			Author: "Jane Austen",
			Chapters: []entities.Chapter{
				chapter(1, "Chapter 1", "It is a truth universally acknowledged, that a single man in possession of a good fortune, must be in want of a wife.\n"+
					"However little known the feelings or views of such a man may be on his first entering a neighbourhood, this truth is so well fixed in the minds of the surrounding families, that he is considered the rightful property of some one or other of their daughters."),
				chapter(2, "Chapter 2", "Mr. Bennet was among the earliest of those who waited on Mr. Bingley.\n"+
					"He had always intended to visit him, though to the last always assuring his wife that he should not go."),
				chapter(3, "Chapter 3", "Not all that Mrs. Bennet, however, with the assistance of her five daughters, could ask on the subject, was sufficient to draw from her husband any satisfactory description of Mr. Bingley."),
			},
		},
		{
			Title:  "Frankenstein",
			Author: "Mary Shelley",
			Chapters: []entities.Chapter{
				chapter(1, "Letter 1", "You will rejoice to hear that no disaster has accompanied the commencement of an enterprise which you have regarded with such evil forebodings.\n"+
					"I arrived here yesterday, and my first task is to assure my dear sister of my welfare and increasing confidence in the success of my undertaking."),
				chapter(2, "Letter 2", "How slowly the time passes here, encompassed as I am by frost and snow!\n"+
					"Yet a second step is taken towards my enterprise."),
			},
		},
		{
			Title:  "The Art of War",
			Author: "Sun Tzu",
			Chapters: []entities.Chapter{
				chapter(1, "Laying Plans", "The art of war is of vital importance to the State.\n"+
					"It is a matter of life and death, a road either to safety or to ruin.\n"+
					"Hence it is a subject of inquiry which can on no account be neglected."),
				chapter(2, "Waging War", "In the operations of war, where there are in the field a thousand swift chariots, as many heavy chariots, and a hundred thousand mail-clad soldiers, the expenditure at home and at the front will reach the total of a thousand ounces of silver per day."),
			},
		},
	}
}

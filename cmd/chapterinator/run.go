package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/export"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/ingest"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/server"
)

var runOpts struct {
	compendio   string
	brief       string
	topics      string
	references  int
	pages       string
	aiSubtopics bool
	stream      bool
	outDir      string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline locally and export the result",
	Long: `Run every stage in order without a server: ingest the documents, map
the content, build the skeleton, generate each chapter and assemble the
ebook. Artifacts are written to the run's export directory.

Examples:
  chapterinator run --compendio compendio.pdf --topics "Historia de la IA"
  chapterinator run --compendio c.pdf --brief brief.pdf --pages 60-70 --stream`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger, err := newLogger()
		if err != nil {
			return err
		}
		h, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		if missing := cfg.MissingOperations(); len(missing) > 0 {
			return fmt.Errorf("operations without an id: %v", missing)
		}

		req := pipeline.IngestRequest{}
		compendio, err := ingest.ReadFile(runOpts.compendio)
		if err != nil {
			return err
		}
		req.Compendio = compendio.File
		if runOpts.brief != "" {
			brief, err := ingest.ReadFile(runOpts.brief)
			if err != nil {
				return err
			}
			req.Brief = &brief.File
		}

		engine, err := server.NewEngine(cfg, logger, nil)
		if err != nil {
			return err
		}

		var onChunk providers.ChunkFunc
		if runOpts.stream {
			onChunk = func(text string) { fmt.Fprint(os.Stdout, text) }
		}

		if err := engine.Ingest(ctx, req); err != nil {
			return err
		}
		if err := engine.Map(ctx, onChunk); err != nil {
			return err
		}
		err = engine.Structure(ctx, pipeline.StructureRequest{
			Topics:         runOpts.topics,
			ReferenceCount: runOpts.references,
			PageCount:      runOpts.pages,
			AISubtopics:    runOpts.aiSubtopics,
		}, onChunk)
		if err != nil {
			return err
		}

		for !engine.Progress().BookComplete {
			ch, err := engine.GenerateNextChapter(ctx, onChunk)
			if err != nil {
				return err
			}
			p := engine.Progress()
			logger.Info("chapter generated", "id", ch.ID, "title", ch.Title, "words", ch.WordCount, "progress", fmt.Sprintf("%d/%d", p.Completed, p.Total))
		}

		if err := engine.Assemble(ctx, onChunk); err != nil {
			return err
		}

		run := engine.Snapshot()
		dir := runOpts.outDir
		if dir == "" {
			dir = h.RunExportDir(run.ID)
		}
		files, err := export.Write(dir, run)
		if err != nil {
			return err
		}
		fmt.Printf("\nRun %s complete: %d files written to %s\n", run.ID, len(files), dir)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.compendio, "compendio", "", "Compendio document (PDF or text)")
	runCmd.Flags().StringVar(&runOpts.brief, "brief", "", "Project brief document")
	runCmd.Flags().StringVar(&runOpts.topics, "topics", "", "Topics the book must cover")
	runCmd.Flags().IntVar(&runOpts.references, "references", 0, "Number of references to use (1-50, default from config)")
	runCmd.Flags().StringVar(&runOpts.pages, "pages", "", "Target page range, e.g. 40-50 (default from config)")
	runCmd.Flags().BoolVar(&runOpts.aiSubtopics, "ai-subtopics", false, "Let the service invent chapter subtopics")
	runCmd.Flags().BoolVar(&runOpts.stream, "stream", false, "Print generated text as it arrives")
	runCmd.Flags().StringVar(&runOpts.outDir, "out", "", "Export directory (default: <home>/exports/<run-id>)")
	runCmd.MarkFlagRequired("compendio")

	rootCmd.AddCommand(runCmd)
}

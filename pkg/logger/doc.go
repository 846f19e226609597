// Package logger builds *slog.Logger instances for the mail queue binaries
// and provides attribute constructors that keep key names consistent.
//
// New creates a logger from functional options. The handler is either
// slog.NewTextHandler or slog.NewJSONHandler, wrapped by LogHandlerDecorator,
// which runs registered ContextExtractor callbacks on every record.
//
// # Usage
//
//	var cfg logger.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	log := logger.New(append(logger.FromConfig(cfg), logger.WithOutput(os.Stderr))...)
//
//	log.InfoContext(ctx, "queue flushed",
//	    logger.Count(sent),
//	    logger.Duration(time.Since(start)),
//	)
//
// # Configuration
//
//   - WithEnvironment: development, staging and production presets.
//   - WithFormat: output format.
//   - WithLevelName: minimum level.
//   - WithOutput: destination writer.
//   - WithContextExtractors: attributes pulled from context, such as the
//     item id set by WithItemID.
//
// Error and Errors return an empty attribute for nil errors, so
//
//	log.Info("sweep finished", logger.Error(err))
//
// needs no nil check.
package logger

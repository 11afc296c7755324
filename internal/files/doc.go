// Package files handles the files behind an upload request and local
// spreadsheet discovery.
//
// Scratch is a per-request temporary directory. Uploaded payloads are base64
// decoded into it concurrently and the whole directory is removed on Close,
// whatever happened in between:
//
//	scratch, err := files.NewScratch(cfg.GetScratchDir(), logger)
//	if err != nil {
//	    return err
//	}
//	defer scratch.Close()
//
//	decoded, err := scratch.DecodeAll(ctx, uploads)
//
// Discovery lists the spreadsheets in a directory for batch imports from the
// command line.
package files

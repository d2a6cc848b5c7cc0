// Package http implements the REST handlers of the expense analytics service.
// Handlers stay thin: they parse and validate requests, call the services
// layer and format responses. Every failure goes through the shared
// errors.ErrorHandler and reaches the client as RFC 7807 problem details.
//
// Routes, relative to /api/v1 unless noted:
//
//	POST   /analysis                      analyze rows sent inline
//	POST   /datasets                      upload a workbook or CSV (multipart "file")
//	POST   /datasets/sheets               import the configured Google spreadsheet
//	GET    /datasets/{id}                 dataset summary
//	DELETE /datasets/{id}                 evict a dataset
//	GET    /datasets/{id}/records         filtered records, JSON or CSV
//	POST   /datasets/{id}/analysis        analyze a stored dataset
//	GET    /datasets/{id}/report.{format} xlsx, csv, pdf, html or json report
//	POST   /client-logs                   dashboard log forwarding
//	GET    /api/health[/ready|/live]      health probes
//	GET    /api/version                   build information
package http

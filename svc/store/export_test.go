package store

var (
	ProfileFilter   = profileFilter
	InvoiceFilter   = invoiceFilter
	StatusSet       = statusSet
	ArchivePipeline = archivePipeline
)

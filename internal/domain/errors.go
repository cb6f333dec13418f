package domain

// DomainNetwork namespaces errors produced by the Go transport. Codes follow the
// URL-loading error numbering so transactions from every capture source read alike.
const DomainNetwork = "net"

const (
	CodeUnknown           = -1
	CodeCancelled         = -999
	CodeBadURL            = -1000
	CodeTimedOut          = -1001
	CodeCannotFindHost    = -1003
	CodeCannotConnect     = -1004
	CodeConnectionLost    = -1005
	CodeNotConnected      = -1009
	CodeBadServerResponse = -1011
	CodeSecureConnection  = -1200
)

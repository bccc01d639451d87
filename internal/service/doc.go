// Package service contains the application use cases that span more than one
// repository.
//
// Services receive repositories (defined in internal/store) through
// constructor injection and apply transactional boundaries with
// store.RunInTransaction when an operation writes to several tables. They
// never depend on a concrete database implementation.
//
// EcosystemService is the registry the provisioner records ecosystems
// through: an ecosystem row and its short link are written together or not
// at all.
package service

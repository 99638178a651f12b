// Package harvest contains the core domain model for single page image
// collection: candidate discovery, filename allocation, duplicate tracking,
// and the engine that turns one page URL into a directory of images plus a
// run report.
package harvest

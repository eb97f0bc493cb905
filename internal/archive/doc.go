// Package archive produces gzip-compressed tarballs of bare repository
// mirrors. Cloning and packaging run through external git and tar commands;
// each repository gets a disposable temporary workspace.
package archive

// Package media stores uploaded post and profile attachments.
package media

// Package directory holds the user directory controller: paginated and
// searched retrieval from the user-management service, local filtering of the
// loaded page, the page navigation window and the delete/edit workflows.
package directory

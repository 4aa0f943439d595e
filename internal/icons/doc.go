// Package icons picks the best icon for a web page or installed web app and
// caches the fetched bytes.
//
// Three sources are tried in order: the web manifest icon list, the icons
// declared in the page meta tags, and finally the origin's /favicon.ico.
package icons

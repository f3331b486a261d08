// Package games holds the promptbox game: one shared room, driven over a
// WebSocket.
//
// How to play
//   - Everyone opens the page and picks a player name
//   - The host sets a challenge (the round's theme) and starts the timer
//   - Each player types a prompt for the challenge before the timer runs out
//   - The host generates images; every prompt is rendered in parallel
//   - Players pick their favourite of their own images
//   - The picks are revealed and the host starts the next round
//
// Implementation details
//   - Every mutation pushes the whole game state to every connected client
//   - Images are never pushed; clients fetch /images/:user when the stage
//     reaches SelectingImage
//   - A player whose generation failed gets a single placeholder image
//   - Players are identified by name only
package games

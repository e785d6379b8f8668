// Package serial implements the terminal transports and the receive path
// that feeds the input queue.
//
// Console drives the process's own terminal in raw mode. Port opens a serial
// device, which is how a physical board's UART is reached from a host.
// Receive plays the part of the RX interrupt: it copies every byte arriving
// on a transport into the input queue. Writer serialises output.
package serial

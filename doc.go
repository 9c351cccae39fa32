/*
Package split allows to run one audio processing unit unmodified under
different hosts: a live audio server, a plugin host or an offline renderer.

Concept

Hosts deliver audio in blocks. Events, such as note on or control change,
arrive with a frame offset inside the block they belong to. To make every
event take effect at its exact sample, the block is split at event offsets
into sub-blocks and the unit is called once per sub-block:

    block:      [0 . . . . . . . 8)
    events:          2 2     5
    sub-blocks: [0,2) [2,5)  [5,8)
    batches:    none  2, 2   5

Sub-blocks of one block are delivered in time order without gaps and
overlaps. Every sub-block starts with the batch of events due exactly at its
first frame, so a unit never has to look for events inside the buffer.

Real-time safety

Scheduling never allocates, blocks or does unbounded work. Buffers are
non-owning views (see signal package) and narrowing them is free. Event
streams are preallocated and reused for every block (see event package).
Sub-block batches are views into the stream.

Units

Processing unit implements Unit interface:

    Init(Format) error
    Process(signal.Buffer, []event.Event) error
    Close() error

Init receives the session format and returns ConfigError if it's not
supported. Process mutates the buffer in place. The first error returned by
Process aborts the rest of the block and is returned to the caller as
ProcessingError. What happens next is decided by the host, see host package.

Hosts

Host adapters live in separate packages: portaudio and malgo for live audio,
plugin for plugin hosts and offline for file rendering. All of them share
host.Engine, so the same input is always split the same way.
*/
package split
